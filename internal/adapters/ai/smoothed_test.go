package ai

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	calls int
	text  string
	err   error
}

func (s *stubClient) Invoke(_ context.Context, _, _ string) (string, error) {
	s.calls++
	return s.text, s.err
}

func (s *stubClient) Model() string { return "stub-model" }

func TestSmoothedClientDelegates(t *testing.T) {
	stub := &stubClient{text: "hello"}
	client := NewSmoothedClient(stub, 600, 10)

	out, err := client.Invoke(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, "stub-model", client.Model())
}

func TestSmoothedClientZeroRateDisablesSmoothing(t *testing.T) {
	stub := &stubClient{}
	client := NewSmoothedClient(stub, 0, 10)
	assert.Same(t, Client(stub), client)
}

func TestSmoothedClientHonorsContextCancel(t *testing.T) {
	stub := &stubClient{text: "hello"}
	// Burst 1 with a slow refill: the second call has to wait.
	client := NewSmoothedClient(stub, 1, 1)

	ctx := context.Background()
	_, err := client.Invoke(ctx, "", "first")
	require.NoError(t, err)

	cancelCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	_, err = client.Invoke(cancelCtx, "", "second")
	assert.Error(t, err)
	assert.Equal(t, 1, stub.calls)
}
