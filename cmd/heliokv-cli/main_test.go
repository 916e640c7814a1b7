package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ASHISH26940/heliokv/internal/client"
	"github.com/ASHISH26940/heliokv/internal/server"
	"github.com/ASHISH26940/heliokv/internal/store"
)

func TestRun_Session(t *testing.T) {
	ts := httptest.NewServer(server.New(store.NewStore(), server.Options{}))
	defer ts.Close()

	input := strings.Join([]string{
		// create, then a duplicate create
		"1", "7", "first",
		"1", "7", "again",
		"2", "7",
		// update with one bad number, then a stale update
		"3", "7", "x", "1", "second",
		"3", "7", "1", "stale",
		"9",
		"5", "ana",
		// an empty name gets the default greeting
		"5", "",
		// delete, then read after delete
		"4", "7",
		"2", "7",
		"0",
	}, "\n") + "\n"

	var out bytes.Buffer
	ticks := int64(1000)
	now := func() int64 { ticks++; return ticks }

	if err := run(context.Background(), strings.NewReader(input), &out, client.New(ts.URL, ts.Client()), now); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		`OK version=1 timestamp=1001 data="first"`,
		`Conflict: current version=1 timestamp=1001 data="first"`,
		`Not a number: "x"`,
		`OK version=2 timestamp=1003 data="second"`,
		`Conflict: current version=2`,
		`Invalid option: "9"`,
		"Hello ana",
		"Hello world",
		"Deleted version=2",
		"Not found",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected output to contain %q\n--- output ---\n%s", want, got)
		}
	}
}

func TestRun_EndOfInput(t *testing.T) {
	var out bytes.Buffer
	// Input ends mid-prompt; the session ends without error.
	if err := run(context.Background(), strings.NewReader("1\n"), &out, client.New("http://127.0.0.1:0", nil), nowMillis); err != nil {
		t.Errorf("expected clean exit at end of input, got %v", err)
	}
}

func TestRun_RequestFailureKeepsSession(t *testing.T) {
	ts := httptest.NewServer(server.New(store.NewStore(), server.Options{}))
	url := ts.URL
	ts.Close()

	var out bytes.Buffer
	if err := run(context.Background(), strings.NewReader("2\n1\n0\n"), &out, client.New(url, nil), nowMillis); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if !strings.Contains(out.String(), "Request failed") {
		t.Errorf("expected a failure message, got %s", out.String())
	}
}
