package cookie

// Cookie is a single name=value pair, as sent by a user-agent in the Cookie header.
type Cookie struct {
	Name  string
	Value string
}

func New(name, value string) Cookie {
	return Cookie{Name: name, Value: value}
}
