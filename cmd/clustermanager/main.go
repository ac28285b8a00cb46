// Package main is the cluster manager daemon executable.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/pflag"

	"github.com/coreframe/clustermanager/cmn"
	"github.com/coreframe/clustermanager/receiver"
)

const usecli = `
   Usage:
        clustermanager --listen=:6666 --max-node=20 --max-context=100 --persist=logs/manager`

func main() {
	os.Exit(run())
}

func run() int {
	conf := cmn.DefaultConfig()

	listen := pflag.String("listen", conf.ListenAddr, "address the MCMP receiver and UI listen on")
	maxNode := pflag.Int("max-node", conf.MaxNode, "node table capacity")
	maxHost := pflag.Int("max-host", conf.MaxHost, "host (alias) table capacity")
	maxContext := pflag.Int("max-context", conf.MaxContext, "context table capacity")
	maxDomain := pflag.Int("max-domain", conf.MaxDomain, "domain table capacity")
	defaultBalancer := pflag.String("default-balancer", conf.DefaultBalancer, "balancer name assigned when CONFIG omits one")
	persistPath := pflag.String("persist", "", "persisted-snapshot base path; empty disables persistence")
	persistInterval := pflag.Duration("persist-interval", conf.PersistInterval, "background snapshot flush interval")
	reapInterval := pflag.Duration("reap-interval", conf.ReapInterval, "watchdog pass interval for reaping tombstoned nodes")
	checkNonce := pflag.Bool("check-nonce", conf.CheckNonce, "require a matching nonce on UI command links")
	wsTunnel := pflag.Bool("ws-tunnel", conf.WSTunnel, "rewrite http/https nodes to ws/wss")
	ajpSecret := pflag.String("ajp-secret", "", "AJP secret copied into ajp-type nodes")
	maxMessageSize := pflag.Int("max-message-size", conf.MaxMessageSize, "maximum MCMP request body size in bytes")
	usage := pflag.BoolP("help", "h", false, "show usage and exit")

	// fold glog's flags (-v, -logtostderr, ...) into the same flag set.
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Parse()

	if *usage {
		pflag.PrintDefaults()
		glog.Info(usecli)
		return 0
	}

	conf.ListenAddr = *listen
	conf.MaxNode = *maxNode
	conf.MaxHost = *maxHost
	conf.MaxContext = *maxContext
	conf.MaxDomain = *maxDomain
	conf.DefaultBalancer = *defaultBalancer
	conf.Persist = *persistPath != ""
	conf.PersistBasePath = *persistPath
	conf.PersistInterval = *persistInterval
	conf.ReapInterval = *reapInterval
	conf.CheckNonce = *checkNonce
	conf.WSTunnel = *wsTunnel
	conf.AJPSecret = *ajpSecret
	conf.MaxMessageSize = *maxMessageSize
	cmn.GCO.Put(conf)

	d, err := receiver.NewDaemon(conf)
	if err != nil {
		glog.Errorf("startup: %v", err)
		return 1
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := d.Shutdown(ctx); err != nil {
			glog.Errorf("shutdown: %v", err)
		}
	}()

	if err := d.Run(); err != nil {
		glog.Errorf("serve: %v", err)
		return 1
	}
	return 0
}
