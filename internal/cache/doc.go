// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供基于 Redis 的短链缓存，用于加速短码到目标 URL 的解析。

# 核心类型

  - LinkCache：持有 go-redis 客户端，提供 Get/Set/Invalidate，
    并实现健康检查接口（Name/Check）。
  - Config：地址、密码、键前缀、TTL、连接池与健康检查间隔。
  - Stats：本进程内的命中与未命中计数。

# 主要能力

  - 读穿缓存：未命中返回 ErrCacheMiss，由调用方回源后 Set。
  - 失效：链接更新或删除时通过 Invalidate 清除。
  - 观察者：WithObserver 将命中率上报到指标系统。
  - 健康检查：后台定时 Ping，Close 时停止。
*/
package cache
