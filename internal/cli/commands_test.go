package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"
)

type rpcResponse struct {
	ID     int             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func TestMCPCommand(t *testing.T) {
	requests := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"cli-test","version":"0"}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"top_importer","arguments":{"geo":"europe","year":2021}}}`,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"world_share_kpis","arguments":{"year":1999}}}`,
	}, "\n") + "\n"

	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"mcp", "--csv", writeCSV(t), "--no-cache"})
	cmd.SetIn(strings.NewReader(requests))
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("mcp command error = %v", err)
	}

	responses := map[int]rpcResponse{}
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var resp rpcResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			t.Fatalf("invalid response line %q: %v", scanner.Text(), err)
		}
		if resp.Error != nil {
			t.Fatalf("request %d failed: %s", resp.ID, resp.Error.Message)
		}
		responses[resp.ID] = resp
	}
	if len(responses) != 4 {
		t.Fatalf("expected 4 responses, got %d:\n%s", len(responses), out.String())
	}

	var list struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(responses[2].Result, &list); err != nil {
		t.Fatalf("decode tools/list: %v", err)
	}
	names := map[string]bool{}
	for _, tool := range list.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"list_years", "geo_year_aggregates", "world_share_kpis", "top_importer", "importer_series"} {
		if !names[want] {
			t.Errorf("tools/list missing %q", want)
		}
	}

	type callResult struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}

	var top callResult
	if err := json.Unmarshal(responses[3].Result, &top); err != nil {
		t.Fatalf("decode tools/call: %v", err)
	}
	if top.IsError || len(top.Content) != 1 || !strings.Contains(top.Content[0].Text, "Netherlands") {
		t.Errorf("top_importer result = %+v, want Netherlands", top)
	}

	var unknown callResult
	if err := json.Unmarshal(responses[4].Result, &unknown); err != nil {
		t.Fatalf("decode tools/call: %v", err)
	}
	if !unknown.IsError {
		t.Error("unknown year should come back as a tool error result")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestServeCommand(t *testing.T) {
	port := freePort(t)
	t.Setenv("SERVER_HOST", "127.0.0.1")
	t.Setenv("SERVER_PORT", strconv.Itoa(port))
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"serve", "--csv", writeCSV(t), "--no-cache"})
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/api/years", port)
	client := &http.Client{Timeout: time.Second}
	deadline := time.Now().Add(5 * time.Second)
	var status int
	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			status = resp.StatusCode
			resp.Body.Close()
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if status != http.StatusOK {
		cancel()
		t.Fatalf("GET /api/years status = %d, want %d", status, http.StatusOK)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve returned %v after shutdown", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop after context cancellation")
	}

	if !strings.Contains(out.String(), fmt.Sprintf("Listening on http://127.0.0.1:%d", port)) {
		t.Errorf("expected banner with listen address, got %q", out.String())
	}
}

func TestServeCommand_MissingCSV(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	_, err := run(t, "serve", "--csv", "does-not-exist.csv", "--no-cache")
	if err == nil {
		t.Error("expected an error for a missing CSV")
	}
}
