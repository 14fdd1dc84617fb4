// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package summarizer

import (
	"context"
	"net/rpc"
	"os/exec"

	"github.com/hashicorp/go-hclog"
	hplugin "github.com/hashicorp/go-plugin"
)

// Handshake identifies the local-process summarizer plugin protocol. Bumping
// ProtocolVersion is a breaking change for every plugin binary.
var Handshake = hplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "AGENT_MEMORY_SUMMARIZER_PLUGIN",
	MagicCookieValue: "summarizer",
}

// RPCPlugin adapts a Summarizer to hashicorp/go-plugin's classic net/rpc
// transport, so a summarizer can run as a separately built subprocess
// (local-process port, spec.md's Summariser Port).
type RPCPlugin struct {
	Impl Summarizer
}

func (p *RPCPlugin) Server(*hplugin.MuxBroker) (interface{}, error) {
	return &rpcServer{impl: p.Impl}, nil
}

func (p *RPCPlugin) Client(b *hplugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &rpcClient{client: c}, nil
}

type summarizeArgs struct {
	Passages  []string
	LevelName string
}

type summarizeReply struct {
	Title   string
	Summary string
	Bullets []string
}

type rpcServer struct {
	impl Summarizer
}

func (s *rpcServer) Summarize(args summarizeArgs, reply *summarizeReply) error {
	res, err := s.impl.Summarize(context.Background(), Input{Passages: args.Passages, LevelName: args.LevelName})
	if err != nil {
		return err
	}
	reply.Title, reply.Summary, reply.Bullets = res.Title, res.Summary, res.Bullets
	return nil
}

// rpcClient is the host-side stub dispensed to callers of LaunchPluginProcess;
// it implements Summarizer by forwarding calls over net/rpc to the
// subprocess.
type rpcClient struct {
	client *rpc.Client
}

func (c *rpcClient) Summarize(_ context.Context, in Input) (Result, error) {
	var reply summarizeReply
	if err := c.client.Call("Plugin.Summarize", summarizeArgs{Passages: in.Passages, LevelName: in.LevelName}, &reply); err != nil {
		return Result{}, err
	}
	return Result{Title: reply.Title, Summary: reply.Summary, Bullets: reply.Bullets}, nil
}

// LaunchPluginProcess starts the summarizer plugin binary at path and
// returns a Summarizer backed by it, plus the underlying client for
// lifecycle control (callers must call Kill when done).
func LaunchPluginProcess(path string) (Summarizer, *hplugin.Client, error) {
	client := hplugin.NewClient(&hplugin.ClientConfig{
		HandshakeConfig: Handshake,
		Plugins:         map[string]hplugin.Plugin{"summarizer": &RPCPlugin{}},
		Cmd:             exec.Command(path),
		Logger:          hclog.New(&hclog.LoggerOptions{Name: "agent-memory-summarizer-plugin", Level: hclog.Info}),
	})

	rpcClientConn, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, nil, err
	}
	raw, err := rpcClientConn.Dispense("summarizer")
	if err != nil {
		client.Kill()
		return nil, nil, err
	}
	return raw.(Summarizer), client, nil
}

// Serve runs impl as a plugin subprocess; call this from a plugin binary's
// main().
func Serve(impl Summarizer) {
	hplugin.Serve(&hplugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins:         map[string]hplugin.Plugin{"summarizer": &RPCPlugin{Impl: impl}},
	})
}
