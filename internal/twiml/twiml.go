// Package twiml builds Twilio voice-response documents. A Response is
// assembled verb by verb and rendered once; it is never mutated after
// rendering. Twilio is strict about this markup: an unparseable body drops
// the live call, so rendering must always succeed for any verb combination.
package twiml

import (
	"encoding/xml"
)

// ContentType is the content type Twilio expects for voice markup.
const ContentType = "application/xml"

// Response is the root <Response> document.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []interface{}
}

// Play instructs Twilio to fetch and play audio from a URL.
type Play struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

// Say speaks literal text with Twilio's built-in voice.
type Say struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

// Gather listens for caller input. Nested Play/Say verbs are spoken while
// (and before) Twilio listens; Action receives the result as a form POST.
type Gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr,omitempty"`
	Action        string   `xml:"action,attr,omitempty"`
	Method        string   `xml:"method,attr,omitempty"`
	SpeechTimeout string   `xml:"speechTimeout,attr,omitempty"`
	Verbs         []interface{}
}

// Redirect transfers control of the call to another webhook URL.
type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// New returns an empty voice response.
func New() *Response {
	return &Response{}
}

// Play appends a Play verb.
func (r *Response) Play(url string) *Response {
	r.Verbs = append(r.Verbs, Play{URL: url})
	return r
}

// Say appends a Say verb.
func (r *Response) Say(text string) *Response {
	r.Verbs = append(r.Verbs, Say{Text: text})
	return r
}

// Gather appends a Gather verb.
func (r *Response) Gather(g Gather) *Response {
	r.Verbs = append(r.Verbs, g)
	return r
}

// Redirect appends a Redirect verb.
func (r *Response) Redirect(url string) *Response {
	r.Verbs = append(r.Verbs, Redirect{Method: "POST", URL: url})
	return r
}

// Hangup appends a Hangup verb.
func (r *Response) Hangup() *Response {
	r.Verbs = append(r.Verbs, Hangup{})
	return r
}

// Render serializes the document with the XML declaration Twilio expects.
func (r *Response) Render() ([]byte, error) {
	body, err := xml.Marshal(r)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}
