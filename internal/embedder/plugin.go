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

package embedder

import (
	"context"
	"net/rpc"
	"os/exec"

	"github.com/hashicorp/go-hclog"
	hplugin "github.com/hashicorp/go-plugin"
)

// Handshake identifies the local-process embedder plugin protocol.
var Handshake = hplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "AGENT_MEMORY_EMBEDDER_PLUGIN",
	MagicCookieValue: "embedder",
}

// RPCPlugin adapts an Embedder to hashicorp/go-plugin's classic net/rpc
// transport, so an embedder can run as a separately built subprocess.
type RPCPlugin struct {
	Impl Embedder
}

func (p *RPCPlugin) Server(*hplugin.MuxBroker) (interface{}, error) {
	return &rpcServer{impl: p.Impl}, nil
}

func (p *RPCPlugin) Client(b *hplugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &rpcClient{client: c}, nil
}

type embedBatchArgs struct {
	Texts []string
}

type embedBatchReply struct {
	Vectors [][]float32
}

type rpcServer struct {
	impl Embedder
}

func (s *rpcServer) EmbedBatch(args embedBatchArgs, reply *embedBatchReply) error {
	vecs, err := s.impl.EmbedBatch(context.Background(), args.Texts)
	if err != nil {
		return err
	}
	reply.Vectors = vecs
	return nil
}

func (s *rpcServer) Describe(_ struct{}, reply *describeReply) error {
	reply.Dimension = s.impl.Dimension()
	reply.Model = s.impl.Model()
	return nil
}

type describeReply struct {
	Dimension int
	Model     string
}

// rpcClient is the host-side stub dispensed by LaunchPluginProcess.
type rpcClient struct {
	client *rpc.Client
}

func (c *rpcClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *rpcClient) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	var reply embedBatchReply
	if err := c.client.Call("Plugin.EmbedBatch", embedBatchArgs{Texts: texts}, &reply); err != nil {
		return nil, err
	}
	return reply.Vectors, nil
}

func (c *rpcClient) Dimension() int {
	var reply describeReply
	_ = c.client.Call("Plugin.Describe", struct{}{}, &reply)
	return reply.Dimension
}

func (c *rpcClient) Model() string {
	var reply describeReply
	_ = c.client.Call("Plugin.Describe", struct{}{}, &reply)
	return reply.Model
}

func (c *rpcClient) Close() error { return nil }

// LaunchPluginProcess starts the embedder plugin binary at path and returns
// an Embedder backed by it, plus the underlying client for lifecycle
// control (callers must call Kill when done).
func LaunchPluginProcess(path string) (Embedder, *hplugin.Client, error) {
	client := hplugin.NewClient(&hplugin.ClientConfig{
		HandshakeConfig: Handshake,
		Plugins:         map[string]hplugin.Plugin{"embedder": &RPCPlugin{}},
		Cmd:             exec.Command(path),
		Logger:          hclog.New(&hclog.LoggerOptions{Name: "agent-memory-embedder-plugin", Level: hclog.Info}),
	})

	rpcClientConn, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, nil, err
	}
	raw, err := rpcClientConn.Dispense("embedder")
	if err != nil {
		client.Kill()
		return nil, nil, err
	}
	return raw.(Embedder), client, nil
}

// Serve runs impl as a plugin subprocess; call this from a plugin binary's
// main().
func Serve(impl Embedder) {
	hplugin.Serve(&hplugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins:         map[string]hplugin.Plugin{"embedder": &RPCPlugin{Impl: impl}},
	})
}
