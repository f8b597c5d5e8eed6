package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonDeviceDenied      ReasonCode = "device_denied"
	ReasonDeviceUnavailable ReasonCode = "device_unavailable"

	ReasonTransportConnect ReasonCode = "transport_connect"
	ReasonTransportClosed  ReasonCode = "transport_closed"
	ReasonTransportSend    ReasonCode = "transport_send"

	ReasonDecodeStructured ReasonCode = "decode_structured"

	ReasonPlaybackDecode ReasonCode = "playback_decode"
	ReasonPlaybackDevice ReasonCode = "playback_device"

	ReasonEncodeImage ReasonCode = "encode_image"
)
