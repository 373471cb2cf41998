package lpmarshaller

import (
	"encoding/json"

	"github.com/webitel/im-notice-service/internal/domain/model"
	wsmarshaller "github.com/webitel/im-notice-service/internal/handler/marshaller/ws"
)

// Response carries the newest frame of a surface. Seq lets the client
// resume with ?since=.
type Response struct {
	Seq     uint64                `json:"seq"`
	Dropped int                   `json:"skipped"`
	Frame   *wsmarshaller.WSFrame `json:"frame"`
}

// MarshallFrames keeps only the newest of the drained frames: each frame is
// a full snapshot, older ones carry nothing the newest does not.
func MarshallFrames(frames []*model.Frame) ([]byte, error) {
	res := Response{}
	if n := len(frames); n > 0 {
		latest := frames[n-1]
		res.Seq = latest.Seq
		res.Dropped = n - 1
		res.Frame = wsmarshaller.MapFrame(latest)
	}
	return json.Marshal(res)
}
