// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 http1 实现服务器使用的 HTTP/1.1 子集：增量请求解析与响应组装。

# 概述

Parser 是一个不做 I/O 的字节级状态机，可以在任意 TCP 分片边界上
继续解析；Builder 将状态码、头部与 body 组装为三段式 Response，
供连接会话以 net.Buffers 一次性写出。

# 核心类型

  - Request：方法、URI、版本、有序头部、body 与原始字节
  - Parser：Parse 返回 ResultProperRequest / ResultInProgress / ResultBadRequest
  - Response：状态行、头部块、body 三段，全部设置后才可发送
  - Builder：按键排序头部，重算 Content-Length，强制 Connection: close

# 支持范围

仅支持 HTTP/1.1；不支持 keep-alive、管线化与 chunked 编码。
*/
package http1
