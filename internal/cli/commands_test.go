package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/papapizza/internal/orderservice"
	"github.com/roach88/papapizza/internal/render"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func TestCartFlow(t *testing.T) {
	api := startAPI(t)
	ctx := context.Background()

	stdout, _, code := run(t, ctx, "--api", api.URL, "cart", "add", "margherita", "2")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "Order summary\n")
	assert.NotContains(t, stdout, "awaiting confirmation")
	assert.Contains(t, stdout, "2 x Margherita")
	assert.Contains(t, stdout, "$27.50")
	assert.Contains(t, stdout, render.SubmitHint)

	stdout, _, code = run(t, ctx, "--api", api.URL, "cart", "add", "pepperoni")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "1 x Pepperoni")
	assert.Contains(t, stdout, "$44.00")

	stdout, _, code = run(t, ctx, "--api", api.URL, "cart", "remove", "margherita")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "1 x Margherita")

	stdout, _, code = run(t, ctx, "--api", api.URL, "cart", "show")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "1 x Margherita")
	assert.Contains(t, stdout, "1 x Pepperoni")
	assert.Contains(t, stdout, "$30.25")

	stdout, _, code = run(t, ctx, "--api", api.URL, "submit")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "Order #1 placed\n", stdout)

	stdout, _, code = run(t, ctx, "--api", api.URL, "cart", "show")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, render.EmptyCart+"\n", stdout)

	stdout, _, code = run(t, ctx, "--api", api.URL, "summary")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "Sales summary")
	assert.Contains(t, stdout, "$30.25")
	assert.Contains(t, stdout, "MAR")
	assert.Contains(t, stdout, "PEP")

	stdout, _, code = run(t, ctx, "--api", api.URL, "summary", "--orders")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "$30.25")

	stdout, _, code = run(t, ctx, "--api", api.URL, "--format", "json", "summary", "--daily")
	require.Equal(t, ExitSuccess, code)
	var resp struct {
		Status string `json:"status"`
		Data   []struct {
			PizzasSold int `json:"pizzas_sold"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, 2, resp.Data[0].PizzasSold)
}

func TestCartAdd_ClampsAtNine(t *testing.T) {
	api := startAPI(t)

	stdout, _, code := run(t, context.Background(), "--api", api.URL, "cart", "add", "hawaiian", "12")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "9 x Hawaiian")
	assert.Contains(t, stdout, "$126.00")
}

func TestCartRemove_ToZero(t *testing.T) {
	api := startAPI(t)
	ctx := context.Background()

	_, _, code := run(t, ctx, "--api", api.URL, "cart", "add", "pepperoni")
	require.Equal(t, ExitSuccess, code)

	stdout, _, code := run(t, ctx, "--api", api.URL, "cart", "remove", "pepperoni", "3")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, render.EmptyCart+"\n", stdout)
}

func TestCartAdd_RolledBack(t *testing.T) {
	api := startAPI(t)
	require.NoError(t, api.Faults.Inject(orderservice.OpUpsert, "out of stock"))

	stdout, stderr, code := run(t, context.Background(), "--api", api.URL, "cart", "add", "margherita")
	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, render.EmptyCart+"\n", stdout)
	assert.Contains(t, stderr, "Error [E002]: out of stock")
}

func TestCartAdd_RolledBackJSON(t *testing.T) {
	api := startAPI(t)
	require.NoError(t, api.Faults.Inject(orderservice.OpUpsert, "out of stock"))

	stdout, _, code := run(t, context.Background(), "--api", api.URL, "--format", "json", "cart", "add", "margherita")
	assert.Equal(t, ExitFailure, code)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeRequestFailed, resp.Error.Code)
	assert.Equal(t, "out of stock", resp.Error.Message)
	assert.Contains(t, stdout, `"notices":[{"kind":"error","message":"out of stock"`)
}

func TestCartAdd_Rejections(t *testing.T) {
	api := startAPI(t)
	ctx := context.Background()

	_, stderr, code := run(t, ctx, "--api", api.URL, "cart", "add", "anchovy")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "Error [E001]")
	assert.Contains(t, stderr, "item is not on the menu: anchovy")

	_, stderr, code = run(t, ctx, "--api", api.URL, "cart", "add", "margherita", "none")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, `count must be a positive integer, got "none"`)
}

func TestCartClear(t *testing.T) {
	api := startAPI(t)
	ctx := context.Background()

	_, _, code := run(t, ctx, "--api", api.URL, "cart", "add", "meat-lovers", "2")
	require.Equal(t, ExitSuccess, code)

	stdout, _, code := run(t, ctx, "--api", api.URL, "cart", "clear")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, render.EmptyCart+"\n", stdout)
}

func TestSubmit(t *testing.T) {
	api := startAPI(t)
	ctx := context.Background()

	_, stderr, code := run(t, ctx, "--api", api.URL, "submit")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "Error [E001]: cannot submit: cart is empty")

	_, _, code = run(t, ctx, "--api", api.URL, "cart", "add", "vegetarian")
	require.Equal(t, ExitSuccess, code)

	require.NoError(t, api.Faults.Inject(orderservice.OpCommit, "kitchen closed"))
	_, stderr, code = run(t, ctx, "--api", api.URL, "submit")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "Error [E002]: kitchen closed")

	stdout, _, code := run(t, ctx, "--api", api.URL, "--format", "json", "submit")
	require.Equal(t, ExitSuccess, code)
	var resp struct {
		Status string       `json:"status"`
		Data   SubmitResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "1", resp.Data.OrderID)
	assert.Equal(t, "Order #1 placed", resp.Data.Message)
}

func TestMenu(t *testing.T) {
	api := startAPI(t)
	ctx := context.Background()

	_, _, code := run(t, ctx, "--api", api.URL, "cart", "add", "pepperoni", "3")
	require.Equal(t, ExitSuccess, code)

	stdout, _, code := run(t, ctx, "--api", api.URL, "menu")
	require.Equal(t, ExitSuccess, code)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "Margherita")
	assert.Contains(t, lines[1], "$12.50")
	assert.Contains(t, lines[2], "Pepperoni")
	assert.Contains(t, lines[2], "   3  Spicy")

	stdout, _, code = run(t, ctx, "--api", api.URL, "--format", "json", "menu")
	require.Equal(t, ExitSuccess, code)
	var resp struct {
		Data []struct {
			ID       string `json:"id"`
			Quantity int    `json:"quantity"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Len(t, resp.Data, 5)
	assert.Equal(t, "pepperoni", resp.Data[1].ID)
	assert.Equal(t, 3, resp.Data[1].Quantity)
}

func TestMenu_Unavailable(t *testing.T) {
	api := startAPI(t)
	require.NoError(t, api.Faults.Inject(orderservice.OpMenu, "menu unavailable"))

	_, stderr, code := run(t, context.Background(), "--api", api.URL, "menu")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "Error [E002]: menu unavailable")
}

func TestUnreachableAPI(t *testing.T) {
	_, stderr, code := run(t, context.Background(), "--api", "http://127.0.0.1:1", "cart", "show")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "could not load the current order")
}

func TestScenarioCommand(t *testing.T) {
	ctx := context.Background()
	scenarios := filepath.Join("..", "harness", "testdata", "scenarios")
	golden := filepath.Join("..", "harness", "testdata", "golden")

	stdout, _, code := run(t, ctx, "scenario", scenarios, "--golden", golden)
	assert.Equal(t, ExitSuccess, code, stdout)
	assert.Contains(t, stdout, "✓ upsert_rejected")
	assert.Contains(t, stdout, "6 passed, 0 failed, 6 total")

	stdout, _, code = run(t, ctx, "scenario", scenarios, "--filter", "submit")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "1 passed, 0 failed, 1 total")
}

func TestScenarioCommand_UpdateAndMismatch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	golden := filepath.Join(dir, "golden")
	file := filepath.Join(dir, "mount.yaml")
	require.NoError(t, writeFile(file, "name: mount\nsteps:\n  - mount: true\n  - settle: true\n"))

	_, stderr, code := run(t, ctx, "scenario", file, "--update")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "--update requires --golden")

	_, _, code = run(t, ctx, "scenario", file, "--golden", golden, "--update")
	require.Equal(t, ExitSuccess, code)
	data, err := os.ReadFile(filepath.Join(golden, "mount.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario": "mount"`)

	require.NoError(t, writeFile(filepath.Join(golden, "mount.golden"), "{}\n"))
	stdout, stderr, code := run(t, ctx, "scenario", file, "--golden", golden)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "✗ mount")
	assert.Contains(t, stdout, "trace does not match golden file")
	assert.Contains(t, stderr, "Error [E004]: 1 of 1 scenarios failed")
}

func TestScenarioCommand_Errors(t *testing.T) {
	ctx := context.Background()

	_, stderr, code := run(t, ctx, "scenario", filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "scenario path not found")

	file := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, writeFile(file, "name: broken\n"))
	stdout, _, code := run(t, ctx, "scenario", file)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "✗ broken.yaml")
	assert.Contains(t, stdout, "steps must not be empty")
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	db := filepath.Join(t.TempDir(), "orders.db")
	_, stderr, code := run(t, ctx, "serve", "--listen", "127.0.0.1:0", "--db", db, "--fault", "upsert=out of stock")
	assert.Equal(t, ExitSuccess, code, stderr)
	assert.FileExists(t, db)
	assert.Contains(t, stderr, "order service ready")
}

func TestServe_Errors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad fault", []string{"serve", "--fault", "bake=too hot"}, "invalid --fault"},
		{"db and redis", []string{"serve", "--db", "a.db", "--redis", "localhost:6379"}, "invalid usage"},
		{"missing menu", []string{"serve", "--menu", "/nonexistent/menu.cue"}, "failed to load menu"},
		{"bad listen", []string{"serve", "--listen", "not-an-address"}, "failed to listen"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, code := run(t, ctx, tt.args...)
			assert.Equal(t, ExitCommandError, code)
			assert.Contains(t, stderr, tt.want)
		})
	}
}
