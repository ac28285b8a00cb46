// Package mcmp implements the wire-level Management Control Protocol:
// tokenizing a request body into key/value pairs and naming the verbs
// the receiver dispatches on.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package mcmp

// Verb is an MCMP request method.
type Verb string

const (
	Config     Verb = "CONFIG"
	EnableApp  Verb = "ENABLE-APP"
	DisableApp Verb = "DISABLE-APP"
	StopApp    Verb = "STOP-APP"
	RemoveApp  Verb = "REMOVE-APP"
	Status     Verb = "STATUS"
	Dump       Verb = "DUMP"
	Info       Verb = "INFO"
	Ping       Verb = "PING"
	Version    Verb = "VERSION"

	// Recognised but unimplemented.
	Error     Verb = "ERROR"
	AddID     Verb = "ADDID"
	RemoveID  Verb = "REMOVEID"
	Query     Verb = "QUERY"
)

// Unimplemented lists verbs the receiver recognises but never acts on.
var Unimplemented = map[Verb]bool{
	Error:    true,
	AddID:    true,
	RemoveID: true,
	Query:    true,
}

// AppScopeVerbs are the four verbs taking JVMRoute+Alias+Context with
// context/node/domain scope.
var AppScopeVerbs = map[Verb]bool{
	EnableApp:  true,
	DisableApp: true,
	StopApp:    true,
	RemoveApp:  true,
}
