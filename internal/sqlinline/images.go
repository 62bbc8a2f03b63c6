package sqlinline

const QEnsureGeneratedImagesTable = `--sql c2b72313-acbf-4bc4-a60f-53aa870694b0
create table if not exists generated_images (
    id             uuid primary key,
    owner_id       text not null,
    prompt         text not null,
    provider       text not null,
    storage_key    text not null,
    storage_url    text not null,
    revised_prompt text not null default '',
    params         jsonb not null default '{}'::jsonb,
    created_at     timestamptz not null default now()
);
create index if not exists generated_images_owner_created_idx
    on generated_images (owner_id, created_at desc);
`

const QInsertGeneratedImage = `--sql 38dbbf3f-cadc-49d0-87ba-65dca02c4886
insert into generated_images (id, owner_id, prompt, provider, storage_key, storage_url, revised_prompt, params)
values ($1::uuid, $2::text, $3::text, $4::text, $5::text, $6::text, $7::text, coalesce($8::jsonb, '{}'::jsonb))
returning created_at;
`

const QSelectGeneratedImage = `--sql fc98b80f-1019-4f30-b359-9982dce448a1
select id::text, owner_id, prompt, provider, storage_key, storage_url, revised_prompt, params, created_at
from generated_images
where owner_id = $1::text
  and id = $2::uuid
limit 1;
`

const QListGeneratedImages = `--sql ddfe8ce2-0f00-4765-a679-7a26bff943b3
select id::text, owner_id, prompt, provider, storage_key, storage_url, revised_prompt, params, created_at
from generated_images
where owner_id = $1::text
  and ($2::timestamptz is null or created_at < $2::timestamptz)
order by created_at desc
limit $3::int;
`

const QDeleteGeneratedImage = `--sql db75032d-82f1-4057-a238-9ef826eea5e6
delete from generated_images
where owner_id = $1::text
  and id = $2::uuid
returning storage_key;
`
