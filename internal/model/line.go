// Package model defines the request and response lines of the helper protocol.
package model

// ResponsePrefix starts every response line written back to Squid.
const ResponsePrefix = "OK store-id="

// Request is one lookup line received from Squid.
type Request struct {
	URL    string
	Extras string // remainder after the first space, verbatim
}

// Response is the reply to a single Request.
type Response struct {
	URL    string
	Extras string
}

// String renders the response in wire form, without the line terminator.
func (r Response) String() string {
	if r.Extras == "" {
		return ResponsePrefix + r.URL
	}
	return ResponsePrefix + r.URL + " " + r.Extras
}
