package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const sessionFormatVersionCurrent = 1

func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionFormatVersionCurrent)
	buf.WriteByte(byte(s.Login))
	buf.WriteByte(byte(s.Reset))

	for _, field := range []string{s.LoginEmail, s.UserID, s.Email, s.ResetEmail, s.ResetUserID} {
		if err := writeShortString(&buf, field); err != nil {
			return nil, err
		}
	}

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionCurrent {
		return nil, errors.New("invalid session version")
	}

	s := &Session{}

	login, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if login > byte(LoginAuthenticated) {
		return nil, errors.New("invalid login state")
	}
	s.Login = LoginState(login)

	reset, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if reset > byte(ResetAuthorized) {
		return nil, errors.New("invalid reset state")
	}
	s.Reset = ResetState(reset)

	for _, field := range []*string{&s.LoginEmail, &s.UserID, &s.Email, &s.ResetEmail, &s.ResetUserID} {
		v, err := readShortString(reader)
		if err != nil {
			return nil, err
		}
		*field = v
	}

	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, err
	}

	return s, nil
}

func writeShortString(buf *bytes.Buffer, v string) error {
	if len(v) > 255 {
		return errors.New("session field too long")
	}
	buf.WriteByte(byte(len(v)))
	buf.WriteString(v)
	return nil
}

func readShortString(reader *bytes.Reader) (string, error) {
	length, err := reader.ReadByte()
	if err != nil {
		return "", err
	}
	raw := make([]byte, length)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}
