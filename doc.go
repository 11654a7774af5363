// Package multiselect 提供 multistream-select 协议协商
//
// 协商引擎位于 pkg/lib/multistream，本包在其外围组装协议注册表、
// 协商超时、节点协议偏好缓存与指标，并以 Fx 管理组件生命周期。
//
// # 快速开始
//
//	svc, err := multiselect.New(
//	    multiselect.WithProtocol("/echo/1.0.0", func(s *multistream.Negotiated) {
//	        defer s.Close()
//	        _, _ = io.Copy(s, s)
//	    }),
//	)
//	if err != nil {
//	    return err
//	}
//	defer svc.Close()
//
//	// 监听方
//	go svc.Serve(ctx, conn)
//
//	// 拨号方
//	proto, stream, err := svc.Select(ctx, conn, []types.ProtocolID{"/echo/1.0.0"})
//
// # 配置
//
// 默认配置见 config.NewConfig，可通过 WithConfig 替换，
// 或使用 config.ApplyPreset 选择预设。
package multiselect
