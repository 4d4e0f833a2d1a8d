// Package dedupe throttles repeated actions per key within a time window.
//
// The development auth server uses it to refuse a second password reset for
// the same address until the window has passed. Keys are compared exactly;
// callers normalize them first.
package dedupe
