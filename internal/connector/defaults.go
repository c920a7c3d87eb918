package connector

import "github.com/jonathan/role-tracker/internal/fetch"

// NewDefaultRegistry registers every built-in connector against the public endpoints.
func NewDefaultRegistry(client *fetch.Client) *Registry {
	r := NewRegistry()
	for _, c := range []Connector{
		NewGreenhouse(client, ""),
		NewLever(client, ""),
		NewAshby(client, ""),
		NewWorkday(client, ""),
		NewICIMS(client, ""),
	} {
		// Types are distinct, so Register cannot fail here.
		_ = r.Register(c)
	}
	return r
}
