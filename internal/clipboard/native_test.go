package clipboard

import (
	"context"
	"strings"
)

type fakeCommands struct {
	outputs map[string]string
	failing map[string]error
	calls   []string
	inputs  []string
}

func (f *fakeCommands) run(ctx context.Context, input, name string, args ...string) (string, error) {
	key := strings.TrimSpace(name + " " + strings.Join(args, " "))
	f.calls = append(f.calls, key)
	f.inputs = append(f.inputs, input)
	if err, ok := f.failing[key]; ok {
		return "", err
	}
	return f.outputs[key], nil
}
