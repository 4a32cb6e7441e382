package serializer

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestResponseToBytesBodyIntact(t *testing.T) {
	response := "HTTP/1.1 200 OK\r\nServer: Test\r\n\r\nThis is the body"

	res, err := http.ReadResponse(bufio.NewReader(strings.NewReader(response)), nil)
	if err != nil {
		panic(err)
	}

	_, err = ResponseToBytes(res)
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	if fmt.Sprintf("%s", body) != "This is the body" {
		t.Fatalf("Body: %s", body)
	}
}

func TestSnapshotSerialization(t *testing.T) {
	res := &http.Response{
		StatusCode: 200,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("body")),
	}
	res.Header.Add("Test", "-ing")
	res.Header.Add("Set-Cookie", "a=1")
	res.Header.Add("Set-Cookie", "b=2")

	bts, err := ResponseToBytes(res)
	if err != nil {
		t.Fatalf("Error creating bytes: %+v", err)
	}
	snap, err := FromBytes(bts)
	if err != nil {
		t.Fatalf("Error creating response: %+v", err)
	}
	if snap.StatusCode != 200 || string(snap.Body) != "body" {
		t.Fatalf("Snapshot is %+v", snap)
	}
	if snap.Header.Get("Test") != "-ing" || len(snap.Header.Values("Set-Cookie")) != 2 {
		t.Fatalf("Headers wrong %+v", snap.Header)
	}
	if snap.Header.Get("Content-Length") != "4" {
		t.Fatalf("Content-Length is %s", snap.Header.Get("Content-Length"))
	}
}

func TestSnapshotResponsesAreIndependent(t *testing.T) {
	snap := Snapshot{StatusCode: 404, Header: http.Header{"X-A": {"1"}}, Body: []byte("gone")}
	first := snap.Response(nil)
	second := snap.Response(nil)

	first.Header.Set("X-A", "changed")
	b1, _ := io.ReadAll(first.Body)
	b2, _ := io.ReadAll(second.Body)

	if string(b1) != "gone" || string(b2) != "gone" {
		t.Fatalf("Bodies are %q and %q", b1, b2)
	}
	if second.Header.Get("X-A") != "1" || snap.Header.Get("X-A") != "1" {
		t.Fatal("Header map shared between responses")
	}
	if second.StatusCode != 404 {
		t.Fatalf("Status is %d", second.StatusCode)
	}
}

func TestCaptureWithoutBody(t *testing.T) {
	res := &http.Response{StatusCode: 204}
	snap, err := Capture(res)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Body) != 0 || snap.Header == nil {
		t.Fatalf("Snapshot is %+v", snap)
	}
	if _, err := io.ReadAll(res.Body); err != nil {
		t.Fatalf("Body not restored: %v", err)
	}
}

func TestFromBytesRejectsGarbage(t *testing.T) {
	if _, err := FromBytes([]byte("not a response")); err == nil {
		t.Fatal("Expected error")
	}
}
