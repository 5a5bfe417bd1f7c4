package catalog

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"usd/internal/service"
)

// Record is a local service the daemon announces
type Record struct {
	ID         string            `msgpack:"id" yaml:"id"`
	Name       string            `msgpack:"name" yaml:"name"`
	Endpoint   string            `msgpack:"endpoint" yaml:"endpoint"`
	Properties map[string]string `msgpack:"properties,omitempty" yaml:"properties,omitempty"`
	UpdatedAt  time.Time         `msgpack:"updated_at" yaml:"-"`
}

func FromService(info service.Info) Record {
	return Record{
		ID:         info.ID,
		Name:       info.Name,
		Endpoint:   info.Endpoint,
		Properties: info.Properties,
	}
}

func (r Record) Service() service.Info {
	return service.New(r.ID, r.Name, r.Endpoint, r.Properties)
}

// Serializer encodes records stored in the catalog
type Serializer interface {
	Serialize(v interface{}) ([]byte, error)
	Deserialize(data []byte, v interface{}) error
}

type MsgPackSerializer struct{}

func (s *MsgPackSerializer) Serialize(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (s *MsgPackSerializer) Deserialize(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}

type GobSerializer struct{}

func (s *GobSerializer) Serialize(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *GobSerializer) Deserialize(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// NewSerializer returns the serializer registered under name, empty means msgpack
func NewSerializer(name string) (Serializer, error) {
	switch name {
	case "", "msgpack":
		return &MsgPackSerializer{}, nil
	case "gob":
		return &GobSerializer{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSerializer, name)
	}
}
