package client

import (
	"fmt"

	interrs "github.com/cpm-sh/cpm/internal/errors"
	"github.com/cpm-sh/cpm/internal/schema"
)

// ToClientFormat renders a runtime server in the generic client shape:
// stdio servers as {command, args, env}, remote servers as {url, headers}.
// Env keys with empty values are not exported to clients.
func ToClientFormat(srv schema.RuntimeServer) (map[string]any, error) {
	switch srv.InstallMethod {
	case schema.TransportStdio:
		entry := map[string]any{
			"command": srv.Command,
			"args":    argsAny(srv.Args),
		}
		if env := configuredEnv(srv.Env); len(env) > 0 {
			entry["env"] = env
		}
		return entry, nil

	case schema.TransportStreamableHTTP, schema.TransportSSE:
		headers := map[string]any{}
		for k, v := range srv.Headers {
			headers[k] = v
		}
		return map[string]any{
			"url":     srv.URL,
			"headers": headers,
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown install method %q", interrs.ErrUnsupportedServer, srv.InstallMethod)
	}
}

// FromClientFormat reconstructs a runtime server from the generic client
// shape. The presence of a command string marks stdio; a url marks a remote,
// whose transport defaults to streamable-http unless the entry says sse.
func FromClientFormat(name string, raw map[string]any) (schema.RuntimeServer, error) {
	if command, ok := raw["command"].(string); ok && command != "" {
		srv := schema.NewStdioServer(name, command, stringSlice(raw["args"]))
		srv.Env = stringMap(raw["env"])
		return srv, nil
	}

	if url, ok := raw["url"].(string); ok && url != "" {
		method := schema.TransportStreamableHTTP
		if t, ok := raw["type"].(string); ok && t == schema.TransportSSE {
			method = schema.TransportSSE
		}
		return schema.NewRemoteServer(name, method, url, stringMap(raw["headers"])), nil
	}

	return schema.RuntimeServer{}, fmt.Errorf(
		"%w: entry %q has neither command nor url", interrs.ErrUnsupportedServer, name,
	)
}

// configuredEnv drops keys with empty values; clients only see variables the
// user actually configured.
func configuredEnv(env map[string]string) map[string]any {
	out := map[string]any{}
	for k, v := range env {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

func argsAny(args []string) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = a
	}
	return out
}

func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return []string{}
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func stringMap(v any) map[string]string {
	raw, ok := v.(map[string]any)
	if !ok {
		return map[string]string{}
	}

	out := make(map[string]string, len(raw))
	for k, item := range raw {
		if s, ok := item.(string); ok {
			out[k] = s
		}
	}
	return out
}
