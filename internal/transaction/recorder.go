// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transaction

import "time"

// Recorder receives transaction-level events for instrumentation. It plays
// the same role as gcsfuse's fs.metricHandle: defined next to the component
// that produces the events, implemented by internal/metrics against
// OpenTelemetry so the engine itself never imports a metrics backend.
type Recorder interface {
	RecordAttempt(op byte)
	RecordTimeout(op byte)
	RecordChecksumFailure(op byte)
	RecordBytesSent(n int)
	RecordBytesReceived(n int)
	RecordLatency(op byte, d time.Duration)
	RecordPeerLearned()
}

// NopRecorder discards every event; it is the Engine's default Recorder.
type NopRecorder struct{}

func (NopRecorder) RecordAttempt(byte)         {}
func (NopRecorder) RecordTimeout(byte)         {}
func (NopRecorder) RecordChecksumFailure(byte) {}
func (NopRecorder) RecordBytesSent(int)        {}
func (NopRecorder) RecordBytesReceived(int)    {}
func (NopRecorder) RecordLatency(byte, time.Duration) {}
func (NopRecorder) RecordPeerLearned()         {}
