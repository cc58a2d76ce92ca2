package module

import "testing"

// not parallel: the registry is process-global

func TestRegistryRoundTrip(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	Register("catalog", FooPort(fooImpl{v: 3}))

	got, ok := PortsAs[FooPort]("catalog")
	if !ok || got.Foo() != 3 {
		t.Fatalf("PortsAs = %v, %v", got, ok)
	}

	if _, ok := PortsAs[FooPort]("dispatch"); ok {
		t.Fatalf("unregistered name must miss")
	}
	if _, ok := PortsAs[int]("catalog"); ok {
		t.Fatalf("mismatched assertion must miss")
	}
}

func TestRegistryResetClears(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	Register("catalog", FooPort(fooImpl{v: 1}))
	Reset()
	if _, ok := PortsAs[FooPort]("catalog"); ok {
		t.Fatalf("reset must clear registrations")
	}
}
