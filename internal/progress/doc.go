// Package progress persists per-item, per-stage completion state.
//
// Each stage owns a single JSON state file in the docs root (.fetch_state.json,
// .translate_state.json, .render_state.json). The files are plain JSON so an
// operator can inspect them or delete one to force a full reset of that stage.
// All writes go through atomic replace; a done record is only ever written
// after the item's output file is fully persisted.
package progress
