package tcp

// Handler is the protocol side of a connection.
type Handler interface {
	OnReadable(data []byte) (alive bool)
	OnDisconnected()
}

// Serve reads from the client until it's gone, either because of a read error
// (including the idle timeout) or because the handler doesn't need more data.
func Serve(client *Client, handler Handler) {
	for {
		data, err := client.Read()
		if len(data) > 0 && !handler.OnReadable(data) {
			break
		}

		if err != nil {
			break
		}
	}

	_ = client.Close()
	handler.OnDisconnected()
}
