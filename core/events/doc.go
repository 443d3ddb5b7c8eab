// Package events defines the typed event contract consumed by the chat
// control loop.
//
// Two closed families exist, each consumed from its own bounded queue:
//
//   - stream.* (StreamEvent): decoded from a provider response stream.
//   - input.* (InputEvent): captured from the user's input device.
//
// stream events
//
//   - StreamStarted (stream.started): the provider created the response.
//   - StreamTextDelta (stream.text_delta): append-only response text piece,
//     emitted in stream order.
//   - StreamCompleted (stream.completed): terminal, the response is complete.
//   - StreamFailed (stream.failed): terminal, the response failed; carries a
//     human readable message.
//
// A stream yields at most one StreamStarted and at most one terminal event,
// and nothing after the terminal event.
//
// input events
//
//   - KeyPress (input.key_press): one key press with its modifiers.
//   - Resize (input.resize): the terminal was resized.
package events
