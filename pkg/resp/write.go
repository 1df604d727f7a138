package resp

import (
	"bufio"
	"strconv"
)

func WriteSimpleString(w *bufio.Writer, s string) error {
	_, err := w.WriteString("+" + s + "\r\n")
	return err
}

func WriteError(w *bufio.Writer, s string) error {
	_, err := w.WriteString("-" + s + "\r\n")
	return err
}

func WriteInteger(w *bufio.Writer, n int64) error {
	_, err := w.WriteString(":" + strconv.FormatInt(n, 10) + "\r\n")
	return err
}

func WriteNullBulk(w *bufio.Writer) error {
	_, err := w.WriteString("$-1\r\n")
	return err
}

func WriteBulk(w *bufio.Writer, b []byte) error {
	if b == nil {
		return WriteNullBulk(w)
	}
	if _, err := w.WriteString("$" + strconv.Itoa(len(b)) + "\r\n"); err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	_, err := w.WriteString("\r\n")
	return err
}

func WriteBulkString(w *bufio.Writer, s string) error {
	return WriteBulk(w, []byte(s))
}

func WriteArrayHeader(w *bufio.Writer, n int) error {
	_, err := w.WriteString("*" + strconv.Itoa(n) + "\r\n")
	return err
}

// WriteStringArray writes an array of bulk strings.
func WriteStringArray(w *bufio.Writer, items []string) error {
	if err := WriteArrayHeader(w, len(items)); err != nil {
		return err
	}
	for _, s := range items {
		if err := WriteBulkString(w, s); err != nil {
			return err
		}
	}
	return nil
}

// WritePush writes a push frame of bulk strings.
func WritePush(w *bufio.Writer, items ...string) error {
	if _, err := w.WriteString(">" + strconv.Itoa(len(items)) + "\r\n"); err != nil {
		return err
	}
	for _, s := range items {
		if err := WriteBulkString(w, s); err != nil {
			return err
		}
	}
	return nil
}

// WriteCommand writes a request as an array of bulk strings.
func WriteCommand(w *bufio.Writer, args ...string) error {
	return WriteStringArray(w, args)
}
