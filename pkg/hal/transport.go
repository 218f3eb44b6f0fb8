package hal

// Pump drains every buffered byte from t into feed. Boards whose UART driver
// owns the receive interrupt call this from the main loop; feed then plays the
// role of the receive interrupt handler.
func Pump(t Transport, feed func(b byte)) int {
	n := 0
	for t.Buffered() > 0 {
		b, err := t.ReadByte()
		if err != nil {
			break
		}
		feed(b)
		n++
	}
	return n
}

// WriteAll sends p byte by byte, stopping at the first error.
func WriteAll(t Transport, p []byte) error {
	for _, b := range p {
		if err := t.WriteByte(b); err != nil {
			return err
		}
	}
	return nil
}
