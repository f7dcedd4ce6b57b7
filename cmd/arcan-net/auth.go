package main

import (
	"bufio"
	"io"
)

// readAuthSecret implements the "-a [n]" flag: read a single line
// auth secret from stdin, and -- since the authenticated key exchange
// itself is a contract-only external collaborator -- simply record
// that preauth pre-authorises the first preauth public keys the wire
// layer will receive, without inspecting key material this core never
// parses.
func readAuthSecret(r io.Reader, preauth int) (secret []byte, preauthSlots [][]byte, err error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, nil, err
	}
	secret = []byte(trimNewline(line))

	if preauth > 0 {
		preauthSlots = make([][]byte, preauth)
	}
	return secret, preauthSlots, nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
