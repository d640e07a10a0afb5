package chatbot

import "fmt"

// Topic identifies an entry of the response catalog. The string form is the
// key exchanged with callers in option payloads.
type Topic int

const (
	Greeting Topic = iota
	Services
	WebDev
	Mobile
	Design
	Cloud
	Projects
	Contact
	Team
	Quote
	Portfolio
	ContactForm
	TeamPage
	Careers
	Schedule
	Pricing
	Process

	topicCount
)

var topicKeys = [topicCount]string{
	Greeting:    "greeting",
	Services:    "services",
	WebDev:      "web-dev",
	Mobile:      "mobile",
	Design:      "design",
	Cloud:       "cloud",
	Projects:    "projects",
	Contact:     "contact",
	Team:        "team",
	Quote:       "quote",
	Portfolio:   "portfolio",
	ContactForm: "contact-form",
	TeamPage:    "team-page",
	Careers:     "careers",
	Schedule:    "schedule",
	Pricing:     "pricing",
	Process:     "process",
}

var topicsByKey = func() map[string]Topic {
	m := make(map[string]Topic, topicCount)
	for t, key := range topicKeys {
		m[key] = Topic(t)
	}
	return m
}()

// Topics returns every topic in declaration order.
func Topics() []Topic {
	out := make([]Topic, 0, topicCount)
	for t := Topic(0); t < topicCount; t++ {
		out = append(out, t)
	}
	return out
}

// ParseTopic maps an external key to its topic. Matching is exact and case-sensitive.
func ParseTopic(key string) (Topic, bool) {
	t, ok := topicsByKey[key]
	return t, ok
}

func (t Topic) Valid() bool { return t >= 0 && t < topicCount }

func (t Topic) String() string {
	if !t.Valid() {
		return fmt.Sprintf("Topic(%d)", int(t))
	}
	return topicKeys[t]
}

func (t Topic) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("chatbot: invalid topic %d", int(t))
	}
	return []byte(topicKeys[t]), nil
}

func (t *Topic) UnmarshalText(b []byte) error {
	parsed, ok := ParseTopic(string(b))
	if !ok {
		return fmt.Errorf("chatbot: unknown topic %q", string(b))
	}
	*t = parsed
	return nil
}
