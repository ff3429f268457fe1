package backend_test

import (
	"testing"

	"github.com/gogpu/gg/backend"
	_ "github.com/gogpu/gg/backend/software"
)

func TestSoftwareBackendRegisters(t *testing.T) {
	if !backend.IsRegistered(backend.BackendSoftware) {
		t.Fatal("software backend not registered")
	}
	b := backend.Get(backend.BackendSoftware)
	if b == nil {
		t.Fatal("Get returned nil for registered backend")
	}
	if err := b.Init(); err != nil {
		t.Fatal(err)
	}
	if b.Device() == nil || b.Queue() == nil {
		t.Fatal("initialized backend has nil device or queue")
	}
	b.Close()
}

func TestDefaultPrefersRegistered(t *testing.T) {
	b := backend.Default()
	if b == nil {
		t.Fatal("no default backend with software registered")
	}
}
