// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供基于 GORM 的数据库打开、连接池管理、健康检查与事务重试。

# 核心类型

  - PoolManager：持有 GORM DB 与底层 sql.DB，提供 DB/Ping/Stats/Close，
    并实现健康检查接口（Name/Check）。
  - PoolConfig：最大空闲/打开连接数、生命周期、空闲超时与健康检查间隔。
  - QueryObserver：接收按操作类型统计的查询耗时。

# 主要能力

  - 多驱动：Open 根据 config.DatabaseConfig 选择 sqlite（纯 Go）、
    postgres 或 mysql 方言。
  - 事务管理：WithTransaction 单次执行，WithTransactionRetry 对死锁、
    序列化失败、SQLite 忙等可重试错误做指数退避重试。
  - 查询埋点：Instrument 通过 gorm 回调上报查询耗时。
*/
package database
