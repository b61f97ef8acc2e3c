// Package proxy relays client traffic to the upstream while keeping thread
// identifiers stable for the client.
//
// Clients address threads by an alias that never changes:
//
//	POST /threads/conv-42/messages
//
// The upstream knows the same thread under an internal id that may expire.
// The Relay looks the alias up in the alias store, rewrites the path to the
// internal id, and forwards the request:
//
//	POST /threads/t_987/messages
//
// # Request Flow
//
//  1. Non-GET bodies are buffered so the request can be replayed
//  2. The alias is read from the first /threads/<alias> segment
//  3. An unseen alias is stored as its own internal id
//  4. The upstream is started on demand and the request forwarded
//  5. On 404 the thread is recreated, the alias moved to the new id, and
//     the request replayed once (see Recoverer)
//  6. "thread_id" fields in JSON responses are rewritten back to the alias
//
// Requests outside /threads/ are relayed verbatim. When the alias store is
// unavailable, aliased requests are relayed verbatim as well.
//
// # Response Headers
//
//	X-Thread-Alias: conv-42
//	X-Thread-Refreshed: 1
//
// The first is set on every aliased response, the second only when the
// thread was recreated while serving the request.
//
// # Streaming
//
// Responses are copied as they arrive. text/event-stream bodies are flushed
// after every write and never patched.
//
// # Errors
//
// Errors raised by the proxy itself use a JSON envelope (see package
// types). Upstream responses, including errors, are relayed as they are.
package proxy
