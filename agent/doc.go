// Package agent implements chat personas on top of the swarm engine.
//
// An Agent answers chat messages. Messages enter the swarm through an Inbox
// source and are published on TagInbound. Each agent registers a gated reply
// handler that builds a prompt from the message's reply chain, completes it
// with a retry loop and hands the reply to a sink that delivers it through a
// ChatClient:
//
//	inbox (source) -> "inbound" -> reply:<name> (gate, retry) -> "outbound:<name>" -> send:<name> (sink)
//
// A failed turn produces no reply; the error is logged by the engine.
package agent
