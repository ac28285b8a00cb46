// Package receiver dispatches MCMP requests to per-verb command
// processors, each of which validates input, mutates the registry
// under lock, and emits a wire response.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package receiver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/coreframe/clustermanager/cmn"
)

// ProtocolVersion is the hard-coded wire version VERSION reports and
// every error response carries in its Version header.
const ProtocolVersion = "0.2.1"

// writeError emits the HTTP 500 / Version,Type,Mess triple expected
// for every error response, whatever kind produced it.
func writeError(w http.ResponseWriter, err error) {
	e := cmn.AsMCMPError(err)
	w.Header().Set("Version", ProtocolVersion)
	w.Header().Set("Type", string(e.Kind))
	w.Header().Set("Mess", e.Msg)
	w.WriteHeader(http.StatusInternalServerError)
	fmt.Fprint(w, "ERROR")
}

// writeEmptyOK emits the plain 200-empty-body success response that
// CONFIG and most *-APP commands expect.
func writeEmptyOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
}

// writeBody emits a 200 whose body is a single "Type=...&k=v&..." line,
// built from an ordered list of (key, value) pairs so callers control
// field casing exactly.
func writeBody(w http.ResponseWriter, kind string, fields [][2]string) {
	var sb strings.Builder
	sb.WriteString("Type=")
	sb.WriteString(kind)
	for _, kv := range fields {
		sb.WriteByte('&')
		sb.WriteString(kv[0])
		sb.WriteByte('=')
		sb.WriteString(kv[1])
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, sb.String())
}
