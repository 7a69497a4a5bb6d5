package netwatch_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"fieldsync/internal/netwatch"
	"fieldsync/internal/services"
	"fieldsync/internal/testsupport"
)

func TestProbeOnlineAgainstListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	probe, err := netwatch.NewProbe("http://"+ln.Addr().String()+"/api", time.Second)
	if err != nil {
		t.Fatalf("NewProbe: %v", err)
	}
	if !probe.Online(context.Background()) {
		t.Fatal("expected listener to be reachable")
	}
}

func TestProbeOfflineWhenNothingListens(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	probe, err := netwatch.NewProbe("http://"+addr, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("NewProbe: %v", err)
	}
	if probe.Online(context.Background()) {
		t.Fatal("expected closed port to be offline")
	}
}

func TestProbeDefaultsPortFromScheme(t *testing.T) {
	cases := map[string]string{
		"https://api.example.com":      "api.example.com:443",
		"http://api.example.com/":      "api.example.com:80",
		"http://10.0.0.5:3000":         "10.0.0.5:3000",
		"https://[2001:db8::1]/health": "[2001:db8::1]:443",
	}
	for in, want := range cases {
		probe, err := netwatch.NewProbe(in, 0)
		if err != nil {
			t.Fatalf("NewProbe(%q): %v", in, err)
		}
		if probe.Address() != want {
			t.Fatalf("NewProbe(%q) address = %q, want %q", in, probe.Address(), want)
		}
	}
}

func TestProbeRejectsUnusableURL(t *testing.T) {
	for _, in := range []string{"", "ftp://files.example.com", "http://"} {
		if _, err := netwatch.NewProbe(in, time.Second); !errors.Is(err, services.ErrConfiguration) {
			t.Fatalf("NewProbe(%q) expected configuration error, got %v", in, err)
		}
	}
}

func TestNewProbeFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAPIBaseURL("http://127.0.0.1:4321"))
	probe, err := netwatch.NewProbeFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewProbeFromConfig: %v", err)
	}
	if probe.Address() != "127.0.0.1:4321" {
		t.Fatalf("unexpected address %q", probe.Address())
	}
}

func TestAlways(t *testing.T) {
	if !netwatch.Always(true).Online(context.Background()) || netwatch.Always(false).Online(context.Background()) {
		t.Fatal("Always should return its value")
	}
}
