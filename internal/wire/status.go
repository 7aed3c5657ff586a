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

package wire

// Standard DOS-style status codes the dispatcher propagates or falls back
// to, per spec.md §4.E / §7.
const (
	StatusOK             uint16 = 0
	StatusFileNotFound   uint16 = 2
	StatusPathNotFound   uint16 = 3
	StatusAccessDenied   uint16 = 5
	StatusInvalidArg     uint16 = 16 // also used for "RMDIR of current directory"
	StatusNoMoreFiles    uint16 = 18
)
