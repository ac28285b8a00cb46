// Package main is a thin MCMP command-line client: it builds a
// key=value body and issues it against a running cluster manager with
// the request method set to the verb name.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/pflag"
)

const usecli = `
   Usage:
        mcmpctl --server http://127.0.0.1:6666 --verb CONFIG JVMRoute=node1 Host=10.0.0.1 Port=8009 Type=ajp Alias=example.com Context=/app`

func main() {
	os.Exit(run())
}

func run() int {
	server := pflag.String("server", "http://127.0.0.1:6666", "cluster manager base URL")
	verb := pflag.String("verb", "", "MCMP verb: CONFIG, ENABLE-APP, DISABLE-APP, STOP-APP, REMOVE-APP, STATUS, PING, DUMP, INFO, VERSION")
	path := pflag.String("path", "/", "request path; use /* to elevate *-APP verbs to node scope")
	usage := pflag.BoolP("help", "h", false, "show usage and exit")
	pflag.Parse()

	if *usage || *verb == "" {
		fmt.Fprintln(os.Stderr, usecli)
		pflag.PrintDefaults()
		return 0
	}

	body := strings.Join(pflag.Args(), "&")
	req, err := http.NewRequest(strings.ToUpper(*verb), strings.TrimRight(*server, "/")+*path, strings.NewReader(body))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "ERROR Version=%s Type=%s Mess=%s\n",
			resp.Header.Get("Version"), resp.Header.Get("Type"), resp.Header.Get("Mess"))
		return 1
	}
	out, _ := io.ReadAll(resp.Body)
	if len(out) > 0 {
		fmt.Println(string(out))
	}
	return 0
}
