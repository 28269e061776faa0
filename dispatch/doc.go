// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 dispatch 提供基于最长前缀匹配的请求分发。

# 概述

Dispatcher 在启动时根据 HandlerSpec 列表与显式 Registry 构建路由表，
之后只读。每次 Dispatch 选出第一个 location 为 URI 字面前缀的路由
（路由按 location 长度降序排列），调用其 Factory 创建 Handler 并返回
Handler 的响应。

# 失败语义

  - 无法构建的 spec 被丢弃并记录日志
  - 未配置 "/" 时自动注入 not_found 路由
  - Factory 创建失败时回退到 "/" 路由，仍失败则返回 500
  - 没有任何前缀匹配时返回 404

每次分发都会创建一个 OpenTelemetry span，并可通过 Recorder 上报指标。
*/
package dispatch
