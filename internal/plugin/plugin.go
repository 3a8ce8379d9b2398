// Package plugin exposes the rule engine to code sniffer hosts over
// hashicorp/go-plugin net/rpc. The host hands over an artifact and gets its
// diagnostics back; the plugin tokenizes the artifact itself when the host
// sends no tokens.
package plugin

import (
	"context"
	"fmt"
	"net/rpc"
	"os"
	"os/exec"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"

	"github.com/drupal-spider/DrupalSecurity/internal/diag"
	"github.com/drupal-spider/DrupalSecurity/internal/engine"
	"github.com/drupal-spider/DrupalSecurity/internal/rules/types"
	"github.com/drupal-spider/DrupalSecurity/internal/token"
	"github.com/drupal-spider/DrupalSecurity/internal/tokenizer"
)

const PluginTypeLinter = "linter"

var HandshakeConfig = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "DRUPALSEC_PLUGIN",
	MagicCookieValue: "5b0f3c1e9d7a4e2f8c6b1a0d3e5f7a9c",
}

var PluginMap = map[string]plugin.Plugin{
	PluginTypeLinter: &LinterPlugin{},
}

type Linter interface {
	Lint(req LintRequest) (LintResponse, error)
}

type LintRequest struct {
	Path     string
	Contents []byte
	Tokens   []token.Token
}

type LintResponse struct {
	Diagnostics []diag.Diagnostic
}

type LinterRPCClient struct{ client *rpc.Client }

func (g *LinterRPCClient) Lint(req LintRequest) (LintResponse, error) {
	var resp LintResponse
	if err := g.client.Call("Plugin.Lint", req, &resp); err != nil {
		return LintResponse{}, err
	}
	return resp, nil
}

type LinterRPCServer struct {
	Impl Linter
}

func (s *LinterRPCServer) Lint(args LintRequest, resp *LintResponse) error {
	out, err := s.Impl.Lint(args)
	if err != nil {
		return err
	}
	*resp = out
	return nil
}

type LinterPlugin struct {
	Impl Linter
}

func (p *LinterPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &LinterRPCServer{Impl: p.Impl}, nil
}

func (LinterPlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &LinterRPCClient{client: c}, nil
}

// EngineLinter lints requests with a local engine
type EngineLinter struct {
	engine *engine.Engine
	logger hclog.Logger
}

func NewEngineLinter(eng *engine.Engine, logger hclog.Logger) *EngineLinter {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &EngineLinter{engine: eng, logger: logger}
}

func (l *EngineLinter) Lint(req LintRequest) (LintResponse, error) {
	var stream *token.Stream
	if len(req.Tokens) > 0 {
		stream = token.NewStream(req.Tokens)
	} else {
		s, err := tokenizer.Tokenize(context.Background(), req.Path, req.Contents)
		if err != nil {
			l.logger.Error("tokenize failed", "path", req.Path, "err", err)
			return LintResponse{}, fmt.Errorf("failed to tokenize %s: %w", req.Path, err)
		}
		stream = s
	}

	diagnostics := l.engine.Run(types.NewFile(req.Path, req.Contents, stream))
	l.logger.Debug("lint finished", "path", req.Path, "tokens", stream.Len(), "diagnostics", len(diagnostics))
	return LintResponse{Diagnostics: diagnostics}, nil
}

func NewLogger(name string) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Output:     os.Stderr,
		Level:      hclog.Info,
		JSONFormat: true,
	})
}

// Serve runs the plugin side. It blocks until the host goes away.
func Serve(linter Linter) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: HandshakeConfig,
		Plugins: map[string]plugin.Plugin{
			PluginTypeLinter: &LinterPlugin{Impl: linter},
		},
	})
}

// Client is the host side of a running plugin process
type Client struct {
	client *plugin.Client
	linter Linter
}

// Open starts the plugin binary at path and dispenses its linter
func Open(path string, logger hclog.Logger) (*Client, error) {
	if logger == nil {
		logger = NewLogger("drupalsec")
	}
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig: HandshakeConfig,
		Plugins:         PluginMap,
		Cmd:             exec.Command(path),
		Logger:          logger,
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to start plugin %s: %w", path, err)
	}

	raw, err := rpcClient.Dispense(PluginTypeLinter)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to dispense linter: %w", err)
	}

	linter, ok := raw.(Linter)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("plugin %s does not implement the linter interface", path)
	}
	return &Client{client: client, linter: linter}, nil
}

func (c *Client) Lint(req LintRequest) (LintResponse, error) {
	return c.linter.Lint(req)
}

// Close kills the plugin process
func (c *Client) Close() {
	c.client.Kill()
}
