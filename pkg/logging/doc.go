// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
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

// Package logging configures structured JSON logging on top of log/slog.
//
// Records are written to stderr and always carry the module name and
// version. The LOG_LEVEL environment variable selects verbosity
// (debug, info, warn, error); unset or unknown values fall back to info.
// Debug level also records source locations.
//
//	func main() {
//	    logging.SetDefaultStructuredLogger("provisionerd", version)
//	    slog.Info("worker starting", "queues", 4)
//	}
package logging
