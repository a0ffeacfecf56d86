package protocol

import (
	"github.com/muurk/lifxlab/internal/logging"
	"go.uber.org/zap"
)

// HandleDatagram unpacks and decodes one received datagram, logging the
// result. The frame is returned even when only the payload failed to decode
// so callers can still attribute the failure to a source or target.
func HandleDatagram(remoteAddr string, data []byte) (*Frame, Message, error) {
	frame, err := Unpack(data)
	if err != nil {
		logging.Debug("Failed to unpack frame",
			zap.String("remote_addr", remoteAddr),
			zap.Int("length", len(data)),
			zap.Error(err),
		)
		logging.LogRawBytes("Rejected datagram bytes", data)
		return nil, nil, err
	}

	msg, err := frame.Message()
	if err != nil {
		logging.Debug("Failed to decode message payload",
			zap.String("remote_addr", remoteAddr),
			zap.String("frame", frame.String()),
			zap.Error(err),
		)
		return frame, nil, err
	}

	logging.Debug("Decoded protocol message",
		zap.String("remote_addr", remoteAddr),
		zap.String("frame", frame.String()),
		zap.String("type", MessageTypeName(msg.Type())),
		zap.String("message", msg.String()),
	)

	return frame, msg, nil
}
