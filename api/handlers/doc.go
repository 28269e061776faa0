// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 webserver 的内置请求处理器。

# 概述

每种 handler 以类型标签注册到 dispatch.Registry，配置文件中的
location 块通过 handler 字段引用类型，通过 options 传入参数。
RegisterBuiltins 一次注册全部内置类型，依赖通过 Deps 注入。

# 内置类型

  - echo：原样返回请求字节
  - static：从 root 目录提供静态文件
  - crud：基于文件系统的实体增删改查
  - health：健康检查，依赖失败时返回 503
  - sleep：延迟响应，用于验证并发
  - not_found：总是返回 404
  - link_manage：短链创建、查询、修改与删除，支持访问密码
  - link_redirect：短链跳转并累加访问计数
  - analytics：单条短链统计与访问量排行

# 存储共享

crud 与短链 handler 按 data_path（或 SQL DSN）共享存储实例，
多个 location 指向同一路径时读写同一份数据。配置 Redis 后，
短链存储的 Resolve 会经过读穿缓存。
*/
package handlers
