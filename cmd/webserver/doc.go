// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 webserver 服务端程序入口。

# 概述

cmd/webserver 是可配置 HTTP/1.1 服务器的可执行入口，基于 cobra 提供
serve、validate、health、version 子命令。配置支持 nginx 风格与 YAML
两种格式，并可由 WEBSERVER_* 环境变量覆盖。

# 核心类型

  - Server：组装分发器、server.Manager、Metrics 端口与 Redis 缓存
  - Middleware：管理端点中间件 func(http.Handler) http.Handler

# 主要能力

  - serve：加载配置 → 初始化日志与遥测 → 构建 handler 注册表与路由表
    → 启动 HTTP/1.1 服务器与 Metrics 服务器 → 等待信号优雅关闭
  - validate：校验配置与 handler 类型，按匹配顺序打印路由表
  - health：以原始 TCP 连接请求 /health 并检查状态码
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）与 /healthz
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
