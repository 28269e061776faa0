// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 实现基于原始 TCP 的 HTTP/1.1 服务器：接受连接、
逐连接运行会话、优雅关闭。

# 概述

Manager 在 net.Listener 上运行 accept 循环，每个连接交给
GoroutinePool 中的一个 Session。Session 读取字节并增量解析，
得到完整请求后交给 Dispatcher 生成响应，写出后关闭连接。
每个连接只处理一个请求。

# 核心类型

  - Manager：持有 listener、会话池、handler 信号量与按 IP 限流器，
    提供 Start/Serve/Shutdown/WaitForShutdown 等生命周期方法。
  - Session：单连接状态机，依次经过 start、reading、dispatching、
    writing、closed 五个状态。
  - Dispatcher：会话依赖的路由接口，由 dispatch.Dispatcher 实现。
  - Observer：连接与会话指标回调，由 metrics.Collector 实现。

# 主要能力

  - 读缓冲复用：读缓冲区来自 BufferPool，大小由 read_buffer_size 决定。
  - 并发控制：handler 执行受 workers 信号量约束，连接数受会话池约束，
    池满时直接关闭新连接。
  - 限流：按客户端 IP 的令牌桶，超限连接收到 429 后关闭。
  - 超时：读写超时作用于单次 I/O，超时后会话静默关闭。
  - 优雅关闭：关闭 listener 后等待进行中的会话，超时则强制关闭连接。
*/
package server
