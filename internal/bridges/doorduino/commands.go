package doorduino

// Commands understood by the controller firmware. The encoders do not
// validate their arguments: ids and secrets must already be
// whitespace-free ASCII tokens.

// EncodeAddButton builds "add_button <id> <secret>\n".
func EncodeAddButton(id, secret string) []byte {
	return []byte("add_button " + id + " " + secret + "\n")
}

// EncodeRemoveButton builds "remove_button <id>\n".
func EncodeRemoveButton(id string) []byte {
	return []byte("remove_button " + id + "\n")
}

// EncodeListButtons builds "list_buttons\n".
func EncodeListButtons() []byte {
	return []byte("list_buttons\n")
}

// EncodeSpaceState builds "spacestate open\n" or "spacestate closed\n".
func EncodeSpaceState(open bool) []byte {
	if open {
		return []byte("spacestate open\n")
	}
	return []byte("spacestate closed\n")
}
