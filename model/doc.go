// Package model defines the provider agnostic text generation contract used by
// handler bodies and the retry loop.
//
// Core goals:
//   - A single call shape: prompt plus sampling parameters in, text out
//   - Stop sequences so script-style prompts end at the next speaker marker
//   - Lightweight mocking for tests (MockGenerator)
//
// Providers (OpenAI, Anthropic) live in sub packages so the engine stays free
// of vendor SDKs.
package model
