package chatbot

// Catalog is the fixed table of canned responses. It is built once and never
// mutated; lookups hand out copies.
type Catalog struct {
	entries  [topicCount]Response
	fallback Response
}

var defaultCatalog = &Catalog{
	entries: [topicCount]Response{
		Greeting: menu(
			"Hello! 👋 Welcome to RiseUp. I can tell you about our services, projects and team. What would you like to know?",
			opt("Our Services", Services),
			opt("View Projects", Projects),
			opt("Contact Us", Contact),
			opt("Meet the Team", Team),
			opt("Get a Quote", Quote),
		),
		Services: menu(
			"We offer a full range of digital services:\n\n• Web Development\n• Mobile Apps\n• UI/UX Design\n• Cloud Solutions\n\nWhich one interests you?",
			opt("Web Development", WebDev),
			opt("Mobile Apps", Mobile),
			opt("UI/UX Design", Design),
			opt("Cloud Solutions", Cloud),
			opt("Get Quote", Quote),
		),
		WebDev: menu(
			"We build fast, responsive websites and web applications, from landing pages and company sites to dashboards and e-commerce platforms, using React, Next.js and Node.js.",
			opt("View Projects", Projects),
			opt("Get Quote", Quote),
			opt("Contact Us", Contact),
		),
		Mobile: menu(
			"We design and build native and cross-platform mobile apps for iOS and Android with React Native and Flutter, from first prototype to store release.",
			opt("View Projects", Projects),
			opt("Get Quote", Quote),
			opt("Contact Us", Contact),
		),
		Design: menu(
			"Our designers handle user research, wireframes, interactive prototypes and complete design systems so your product looks great and is easy to use.",
			opt("View Projects", Projects),
			opt("Get Quote", Quote),
			opt("Contact Us", Contact),
		),
		Cloud: menu(
			"We set up and run scalable infrastructure on AWS and other providers: hosting, CI/CD pipelines, monitoring and migrations of existing systems.",
			opt("View Projects", Projects),
			opt("Get Quote", Quote),
			opt("Contact Us", Contact),
		),
		Projects: menu(
			"We've delivered projects for startups and established businesses across many industries. Would you like to see our work?",
			opt("View Portfolio", Portfolio),
			opt("Get Quote", Quote),
			opt("Contact Us", Contact),
		),
		Contact: menu(
			"You can reach us by:\n\n📧 Email: hello@riseup.dev\n📞 Phone: +1 (555) 010-2030\n\nHow would you like to get in touch?",
			opt("Contact Form", ContactForm),
			opt("Schedule a Call", Schedule),
			opt("Get Quote", Quote),
		),
		Team: menu(
			"Our team is a group of developers, designers and strategists who love turning ideas into products.",
			opt("Meet the Team", TeamPage),
			opt("Our Process", Process),
			opt("Careers", Careers),
		),
		Quote: menu(
			"We'd love to hear about your project! Every project is different, so we prepare custom quotes based on scope and timeline.",
			opt("Fill Contact Form", ContactForm),
			opt("Schedule a Call", Schedule),
			opt("Pricing Info", Pricing),
		),
		Portfolio:   action("Taking you to our projects page..."),
		ContactForm: action("Opening the contact form..."),
		TeamPage:    action("Taking you to meet our team..."),
		Careers:     action("Let's look at the open positions on our careers page..."),
		Schedule: menu(
			"We'd be happy to set up a call. Send us a message through the contact form with a few times that suit you and we'll confirm within 24 hours.",
			opt("Contact Form", ContactForm),
			opt("Contact Info", Contact),
		),
		Pricing: menu(
			"Our pricing depends on scope:\n\n• Websites from $2,000\n• Mobile apps from $5,000\n• Design projects from $1,000\n\nReach out for an exact quote.",
			opt("Contact Form", ContactForm),
			opt("Schedule a Call", Schedule),
		),
		Process: menu(
			"Our process:\n\n1. Discovery\n2. Design\n3. Development\n4. Testing\n5. Launch & Support\n\nWe keep you involved at every step.",
			opt("Start a Project", ContactForm),
			opt("Contact Us", Contact),
		),
	},
	fallback: menu(
		"I'm not sure I understood that. I can help you with:\n\n• Services\n• Projects\n• Contact\n• Team\n• Quote\n\nWhat would you like to know?",
		opt("Services", Services),
		opt("Projects", Projects),
		opt("Contact", Contact),
		opt("Team", Team),
		opt("Quote", Quote),
	),
}

// DefaultCatalog returns the process-wide catalog.
func DefaultCatalog() *Catalog { return defaultCatalog }

// Get looks up a response by its external topic key.
func (c *Catalog) Get(key string) (Response, bool) {
	t, ok := ParseTopic(key)
	if !ok {
		return Response{}, false
	}
	return c.Lookup(t), true
}

// Lookup returns the response registered for t, or the fallback for an invalid topic.
func (c *Catalog) Lookup(t Topic) Response {
	if !t.Valid() {
		return c.Fallback()
	}
	return c.entries[t].clone()
}

// Fallback is the "didn't understand" reply re-offering the top-level menu.
func (c *Catalog) Fallback() Response {
	return c.fallback.clone()
}

// Entry pairs a topic with its response for listings.
type Entry struct {
	Topic    Topic    `json:"topic"`
	Response Response `json:"response"`
}

// Entries lists the catalog in topic order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, topicCount)
	for _, t := range Topics() {
		out = append(out, Entry{Topic: t, Response: c.Lookup(t)})
	}
	return out
}
