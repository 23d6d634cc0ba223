package expand

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGenerator returns a fixed result or error.
type stubGenerator struct {
	result *Result
	err    error
	delay  time.Duration
}

func (s *stubGenerator) Name() string { return "stub" }

func (s *stubGenerator) Generate(ctx context.Context, _ string) (*Result, error) {
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	return s.result, s.err
}

func TestExpander_ValidGeneratorOutput(t *testing.T) {
	gen := &stubGenerator{result: &Result{
		LexicalQueries: []string{"docker compose networking", "compose network"},
		VectorQueries:  []string{"docker compose networking", "how containers talk in compose"},
		Hyde:           "Compose places services on a shared network.",
	}}
	e := New(gen)

	res := e.Expand(context.Background(), "docker compose networking")

	assert.Equal(t, gen.result, res)
}

func TestExpander_GeneratorError_Fallback(t *testing.T) {
	e := New(&stubGenerator{err: errors.New("service unavailable")})

	res := e.Expand(context.Background(), "docker compose networking")

	assert.Equal(t, Fallback("docker compose networking"), res)
}

func TestExpander_SchemaInvalid_Fallback(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
	}{
		{"empty lexical array", &Result{
			LexicalQueries: []string{},
			VectorQueries:  []string{"x"},
		}},
		{"empty vector array", &Result{
			LexicalQueries: []string{"docker compose networking"},
			VectorQueries:  nil,
		}},
		{"missing original query", &Result{
			LexicalQueries: []string{"compose network"},
			VectorQueries:  []string{"docker compose networking"},
		}},
		{"blank variant", &Result{
			LexicalQueries: []string{"docker compose networking", ""},
			VectorQueries:  []string{"docker compose networking"},
		}},
		{"nil result", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(&stubGenerator{result: tt.result})
			res := e.Expand(context.Background(), "docker compose networking")
			assert.Equal(t, Fallback("docker compose networking"), res)
		})
	}
}

func TestExpander_Timeout_Fallback(t *testing.T) {
	e := New(&stubGenerator{
		delay:  200 * time.Millisecond,
		result: Fallback("q"),
	}, WithTimeout(10*time.Millisecond))

	start := time.Now()
	res := e.Expand(context.Background(), "slow query")

	assert.Equal(t, Fallback("slow query"), res)
	assert.Less(t, time.Since(start), 150*time.Millisecond,
		"expansion must respect its deadline")
}

func TestExpander_CancelledContext_Fallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New(&stubGenerator{delay: time.Second, result: Fallback("q")})
	res := e.Expand(ctx, "some query")

	assert.Equal(t, Fallback("some query"), res)
}

func TestExpander_NilGenerator_Fallback(t *testing.T) {
	e := New(nil)
	res := e.Expand(context.Background(), "anything")
	assert.Equal(t, Fallback("anything"), res)
}

func TestExpander_BlankQuery_SkipsGenerator(t *testing.T) {
	gen := &stubGenerator{err: errors.New("must not be called")}
	e := New(gen)

	res := e.Expand(context.Background(), "   ")

	assert.Equal(t, Fallback("   "), res)
}

func TestFallback_Shape(t *testing.T) {
	res := Fallback("docker compose networking")

	require.Equal(t, []string{"docker compose networking"}, res.LexicalQueries)
	require.Equal(t, []string{"docker compose networking"}, res.VectorQueries)
	assert.Empty(t, res.Hyde)
	assert.Empty(t, res.Notes)

	valid, errs := Validate("docker compose networking", res)
	assert.True(t, valid, "fallback must be schema-valid: %v", errs)
}
