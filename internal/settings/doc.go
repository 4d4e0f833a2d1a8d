// Package settings loads server-side settings and private configuration after
// sign-in so the rest of the client can read them synchronously.
//
//	s := settings.NewSettings(api)
//	if err := s.Fetch(ctx); err != nil { ... }
//	title, _ := s.Get("title")
package settings
