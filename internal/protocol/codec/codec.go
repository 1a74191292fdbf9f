package codec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/palemoky/take-six/internal/protocol"
)

// Format 线路编码格式
type Format string

const (
	FormatJSON     Format = "json"
	FormatProtobuf Format = "protobuf"
)

const (
	fieldType    = "type"
	fieldPayload = "payload"
)

// Codec 消息帧编解码器
// JSON 为默认格式；protobuf 格式使用 structpb.Struct 作为信封。
type Codec struct {
	format Format
}

// New 创建编解码器，format 为空时使用 JSON
func New(format Format) (*Codec, error) {
	switch format {
	case "", FormatJSON:
		return &Codec{format: FormatJSON}, nil
	case FormatProtobuf:
		return &Codec{format: FormatProtobuf}, nil
	default:
		return nil, fmt.Errorf("unsupported codec format %q", format)
	}
}

// Format 返回当前编码格式
func (c *Codec) Format() Format {
	return c.format
}

// Encode 将消息编码为字节
func (c *Codec) Encode(m *protocol.Message) ([]byte, error) {
	if c.format == FormatProtobuf {
		return encodeProto(m)
	}
	return encodeJSON(m)
}

// Decode 从字节解码消息
// 注意: 使用完毕后应调用 PutMessage 归还对象到池
func (c *Codec) Decode(data []byte) (*protocol.Message, error) {
	if c.format == FormatProtobuf {
		return decodeProto(data)
	}
	return decodeJSON(data)
}

func encodeJSON(m *protocol.Message) ([]byte, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)

	if err := json.NewEncoder(buf).Encode(m); err != nil {
		return nil, err
	}
	// Encoder 会追加换行符
	out := make([]byte, buf.Len()-1)
	copy(out, buf.Bytes())
	return out, nil
}

func decodeJSON(data []byte) (*protocol.Message, error) {
	msg := GetMessage()
	if err := json.Unmarshal(data, msg); err != nil {
		PutMessage(msg)
		return nil, err
	}
	if msg.Type == "" {
		PutMessage(msg)
		return nil, fmt.Errorf("message type is empty")
	}
	return msg, nil
}

func encodeProto(m *protocol.Message) ([]byte, error) {
	fields := map[string]*structpb.Value{
		fieldType: structpb.NewStringValue(string(m.Type)),
	}

	if len(m.Payload) > 0 {
		var raw any
		if err := json.Unmarshal(m.Payload, &raw); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		v, err := structpb.NewValue(raw)
		if err != nil {
			return nil, fmt.Errorf("convert payload: %w", err)
		}
		fields[fieldPayload] = v
	}

	return proto.Marshal(&structpb.Struct{Fields: fields})
}

func decodeProto(data []byte) (*protocol.Message, error) {
	var envelope structpb.Struct
	if err := proto.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}

	msgType := envelope.GetFields()[fieldType].GetStringValue()
	if msgType == "" {
		return nil, fmt.Errorf("message type is empty")
	}

	msg := GetMessage()
	msg.Type = protocol.MessageType(msgType)

	if v, ok := envelope.GetFields()[fieldPayload]; ok {
		payload, err := v.MarshalJSON()
		if err != nil {
			PutMessage(msg)
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		msg.Payload = payload
	}
	return msg, nil
}
