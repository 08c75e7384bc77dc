// Package admission orchestrates a batch of incoming events for one site:
// it resolves the owning account, asks the quota actor about each event in
// input order, enriches admitted events with visitor and session identity and
// forwards them to the sink.
//
// Batches are not atomic. When an event is denied midway, the events admitted
// before it are still forwarded and their increments stay committed.
package admission
