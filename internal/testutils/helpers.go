// Package testutils holds fixtures shared by the agent test suites.
package testutils

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/aretw0/mesa/internal/agents"
	"github.com/aretw0/mesa/pkg/auth"
	"github.com/aretw0/mesa/pkg/domain"
	"github.com/aretw0/mesa/pkg/registry"
	"github.com/aretw0/mesa/pkg/rpc"
	"github.com/aretw0/mesa/pkg/update"
	"github.com/stretchr/testify/require"
)

// Key is the API key accepted by dispatchers built with NewDispatcher.
const Key = "test-key"

// NewDispatcher registers a into a fresh registry and guards it with Key.
func NewDispatcher(t *testing.T, a agents.Agent) *rpc.Dispatcher {
	t.Helper()
	reg := registry.NewRegistry()
	agents.Register(reg, a)
	return rpc.New(reg, auth.NewStaticKeys(Key), rpc.WithAgent(a.Name()))
}

// Call dispatches method with params under Key and request id "1".
func Call(d *rpc.Dispatcher, method string, params any) domain.Response {
	return d.Dispatch(context.Background(), domain.NewRequest("1", method, params), "test-instance", Key)
}

// Result decodes a successful response into out, failing on any error response.
func Result(t *testing.T, resp domain.Response, out any) {
	t.Helper()
	require.Nil(t, resp.Error, "unexpected error response")
	require.NoError(t, resp.Decode(out))
}

// Code returns the error code of resp, failing when it succeeded.
func Code(t *testing.T, resp domain.Response) int {
	t.Helper()
	require.NotNil(t, resp.Error, "expected an error response")
	return resp.Error.Code
}

// Delivery is one request captured by a Recorder.
type Delivery struct {
	Agent   string
	Request domain.Request
}

// Params returns the request params after a JSON round-trip, as a consumer would see them.
func (d Delivery) Params() map[string]any {
	raw, _ := json.Marshal(d.Request.Params)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return out
}

// Recorder is an update.Caller that records every request.
// Requests are answered by Respond when set, otherwise with a positive Ack.
type Recorder struct {
	mu         sync.Mutex
	deliveries []Delivery
	Respond    func(agent string, req domain.Request) domain.Response
}

var _ update.Caller = (*Recorder)(nil)

func (r *Recorder) Call(ctx context.Context, agent string, req domain.Request) domain.Response {
	r.mu.Lock()
	r.deliveries = append(r.deliveries, Delivery{Agent: agent, Request: req})
	respond := r.Respond
	r.mu.Unlock()

	if respond != nil {
		return respond(agent, req)
	}
	id, _ := req.ID.(string)
	return domain.NewResult(req.ID, update.Accepted(id))
}

// Deliveries returns a copy of what was captured, in arrival order.
func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

// To returns the captured deliveries addressed to agent.
func (r *Recorder) To(agent string) []Delivery {
	var out []Delivery
	for _, d := range r.Deliveries() {
		if d.Agent == agent {
			out = append(out, d)
		}
	}
	return out
}

// Deps builds agent dependencies whose publisher and caller both go to r.
// Callers must Wait on the returned publisher before inspecting r.
func (r *Recorder) Deps(source string) (agents.Deps, *update.Publisher) {
	pub := update.NewPublisher(r, source)
	return agents.Deps{Caller: r, Publisher: pub}, pub
}
