// Package notify keeps the list of user-visible alerts and renders them.
//
// Alerts carry a type (error, warn, info, success) and an optional key. A new
// alert with the same key as an existing one replaces it, so repeating a
// failed action does not stack identical messages.
//
// ShowAPIError turns an error from the API client into alerts:
//
//   - version mismatch: a single upgrade alert
//   - request errors with a detail list: one alert per detail
//   - anything else: the caller's default text, or a generic server message
//
// Rendering is delegated to a Sink. TerminalSink prints colored lines; a nil
// sink only records alerts.
package notify
