// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的请求管线指标采集能力。

# 概述

Collector 在独立的 prometheus.Registry 上注册全部指标（并附带 Go
运行时与进程采集器），通过 Handler() 暴露给独立的 metrics 端口。
所有指标按 namespace 隔离。

# 主要能力

  - 请求指标：按 route/status 计数、分发耗时、请求/响应字节数
  - 解析指标：parser 终态计数（proper_request / bad_request）
  - 连接指标：accepted / rejected / rate_limited 计数与活跃会话 Gauge
  - 缓存指标：短链缓存命中与未命中
  - 数据库指标：按操作统计查询耗时
*/
package metrics
